package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"
)

const directoryTimeout = 10 * time.Second

// LDAPConfig configures the directory-service authenticator.
type LDAPConfig struct {
	URL          string
	BindDN       string
	BindPassword string
	BaseDN       string
	// UserFilter must contain one %s for the username.
	UserFilter  string
	AdminGroups []string
}

// LDAPAuthenticator binds against the company directory and maps the
// entry to a normalized profile. Admin status is derived from group
// membership against the configured allow-list.
type LDAPAuthenticator struct {
	config LDAPConfig
	logger *zap.Logger
}

func NewLDAPAuthenticator(config LDAPConfig, logger *zap.Logger) *LDAPAuthenticator {
	if config.UserFilter == "" {
		config.UserFilter = "(|(uid=%s)(sAMAccountName=%s))"
	}
	return &LDAPAuthenticator{config: config, logger: logger}
}

func (a *LDAPAuthenticator) Authenticate(ctx context.Context, username, password string) (*Profile, error) {
	if password == "" {
		// An empty password would turn the user bind into an anonymous
		// bind, which some directories accept.
		return nil, ErrInvalidCredentials
	}

	conn, err := ldap.DialURL(a.config.URL)
	if err != nil {
		a.logger.Warn("Directory service unreachable", zap.String("url", a.config.URL), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDirectoryDown, err)
	}
	defer conn.Close()
	conn.SetTimeout(directoryTimeout)

	if a.config.BindDN != "" {
		if err := conn.Bind(a.config.BindDN, a.config.BindPassword); err != nil {
			a.logger.Error("Service-account bind failed", zap.Error(err))
			return nil, fmt.Errorf("%w: service bind failed", ErrDirectoryDown)
		}
	}

	escaped := ldap.EscapeFilter(username)
	filter := strings.ReplaceAll(a.config.UserFilter, "%s", escaped)
	search := ldap.NewSearchRequest(
		a.config.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, int(directoryTimeout.Seconds()), false,
		filter,
		[]string{"dn", "mail", "displayName", "givenName", "sn", "department", "memberOf", "cn"},
		nil,
	)

	result, err := conn.Search(search)
	if err != nil {
		return nil, fmt.Errorf("%w: search failed: %v", ErrDirectoryDown, err)
	}
	if len(result.Entries) == 0 {
		return nil, ErrInvalidCredentials
	}
	entry := result.Entries[0]

	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	groups := groupNames(entry.GetAttributeValues("memberOf"))
	profile := &Profile{
		Username:    username,
		Email:       entry.GetAttributeValue("mail"),
		DisplayName: entry.GetAttributeValue("displayName"),
		FirstName:   entry.GetAttributeValue("givenName"),
		LastName:    entry.GetAttributeValue("sn"),
		Department:  entry.GetAttributeValue("department"),
		Groups:      groups,
		IsAdmin:     isAdminGroup(groups, a.config.AdminGroups),
	}
	if profile.DisplayName == "" {
		profile.DisplayName = entry.GetAttributeValue("cn")
	}

	return profile, nil
}

// groupNames reduces memberOf DNs to their leading CN values.
func groupNames(memberOf []string) []string {
	names := make([]string, 0, len(memberOf))
	for _, dn := range memberOf {
		first := strings.SplitN(dn, ",", 2)[0]
		if cn, found := strings.CutPrefix(strings.ToLower(first), "cn="); found {
			names = append(names, cn)
		} else {
			names = append(names, first)
		}
	}
	return names
}

// isAdminGroup is a case-insensitive membership check against the
// configured allow-list.
func isAdminGroup(groups, adminGroups []string) bool {
	for _, g := range groups {
		for _, admin := range adminGroups {
			if strings.EqualFold(g, admin) {
				return true
			}
		}
	}
	return false
}
