package identity

import (
	"os"
	"os/user"

	"github.com/ssuji15/kennel/model"
)

// Account is the resolved OS identity for a launch request.
type Account struct {
	UID  string
	GID  string
	Home string
}

// Resolver is the identity collaborator. The OS implementation reads the
// host's user database; tests inject fakes.
type Resolver interface {
	Lookup(username string) (Account, error)
	HomeExists(home string) bool
}

// OSResolver resolves users against the host passwd database.
type OSResolver struct{}

func (OSResolver) Lookup(username string) (Account, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return Account{}, &model.UnknownUserError{Username: username}
	}
	return Account{
		UID:  u.Uid,
		GID:  u.Gid,
		Home: u.HomeDir,
	}, nil
}

func (OSResolver) HomeExists(home string) bool {
	info, err := os.Stat(home)
	return err == nil && info.IsDir()
}
