package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// AccountKind selects the Account variant.
type AccountKind string

const (
	AccountKeerV2 AccountKind = "keer_v2"
	AccountLocal  AccountKind = "local"
)

var ErrUnknownAccountKind = errors.New("unknown account kind")

// KeerV2Account is a server-backed account.
type KeerV2Account struct {
	Host        string `json:"host"`
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
}

// LocalAccount never talks to a server.
type LocalAccount struct {
	ID string `json:"id"`
}

// Account is a tagged union: exactly one payload matches Kind.
type Account struct {
	Kind   AccountKind    `json:"kind"`
	KeerV2 *KeerV2Account `json:"keer_v2,omitempty"`
	Local  *LocalAccount  `json:"local,omitempty"`
}

func NewKeerV2Account(host, userID, token string) Account {
	return Account{Kind: AccountKeerV2, KeerV2: &KeerV2Account{Host: host, UserID: userID, AccessToken: token}}
}

func NewLocalAccount(id string) Account {
	return Account{Kind: AccountLocal, Local: &LocalAccount{ID: id}}
}

// Key returns the account key used to scope every stored row.
func (a Account) Key() (string, error) {
	switch a.Kind {
	case AccountKeerV2:
		if a.KeerV2 == nil {
			return "", fmt.Errorf("%s account without payload", a.Kind)
		}
		host := strings.TrimRight(a.KeerV2.Host, "/")
		if u, err := url.Parse(host); err == nil && u.Host != "" {
			host = u.Host
		}
		return fmt.Sprintf("keer:%s:%s", host, a.KeerV2.UserID), nil
	case AccountLocal:
		if a.Local == nil {
			return "", fmt.Errorf("%s account without payload", a.Kind)
		}
		return "local:" + a.Local.ID, nil
	default:
		return "", ErrUnknownAccountKind
	}
}

// Remote reports whether the account synchronizes with a server.
func (a Account) Remote() bool {
	switch a.Kind {
	case AccountKeerV2:
		return true
	default:
		return false
	}
}
