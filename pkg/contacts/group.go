package contacts

// Group type values as reported by the contacts API.
const (
	GroupTypeUser   = "USER_CONTACT_GROUP"
	GroupTypeSystem = "SYSTEM_CONTACT_GROUP"
)

// systemGroupResources are account-managed groups that must never be used
// as sync filter targets or mirrored across accounts.
var systemGroupResources = map[string]bool{
	"contactGroups/myContacts": true,
	"contactGroups/starred":    true,
	"contactGroups/all":        true,
	"contactGroups/friends":    true,
	"contactGroups/family":     true,
	"contactGroups/coworkers":  true,
}

// Group is a contact group (label) within one account.
type Group struct {
	Resource string `json:"resource"`
	Etag     string `json:"etag,omitempty"`
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Deleted  bool   `json:"deleted,omitempty"`
}

// IsSystemGroupResource reports whether a group resource name is one of the
// well-known account-managed groups.
func IsSystemGroupResource(resource string) bool {
	return systemGroupResources[resource]
}

// IsSystem reports whether the group is account-managed.
func (g *Group) IsSystem() bool {
	return g.Type == GroupTypeSystem || IsSystemGroupResource(g.Resource)
}

// IsSyncable reports whether the group may participate in sync scoping:
// a named, live, user-created group.
func (g *Group) IsSyncable() bool {
	return !g.IsSystem() && g.Name != "" && !g.Deleted
}
