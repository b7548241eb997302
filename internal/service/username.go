package service

import (
	"strings"

	"github.com/google/uuid"

	"github.com/accountops/account-deletion/internal/domain"
)

var deletedUsernameSpace = uuid.MustParse("5b0f3f52-6f1e-4b8a-9a51-3c8a1de0c1a4")

// UsernameGenerator picks the replacement name given to a deleted account.
type UsernameGenerator interface {
	Generate(user *domain.User) string
}

type prefixedUsernames struct {
	prefix string
}

// NewUsernameGenerator returns names of the form <prefix><hex>. The suffix is
// derived from the user id, so a retried execution produces the same name.
func NewUsernameGenerator(prefix string) UsernameGenerator {
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = "DeletedMember"
	}
	return prefixedUsernames{prefix: prefix}
}

func (g prefixedUsernames) Generate(user *domain.User) string {
	id := uuid.NewSHA1(deletedUsernameSpace, []byte(user.ID))
	suffix := strings.ReplaceAll(id.String(), "-", "")[:12]
	return g.prefix + suffix
}
