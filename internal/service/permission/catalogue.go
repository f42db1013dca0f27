package permission

import (
	"sort"

	"github.com/jwalitptl/onboarding-api/internal/model"
)

// statements is the full permission catalogue: every (resource, action) pair that may exist.
var statements = map[string][]string{
	"user":             {"create", "read", "list", "update", "delete", "set-role"},
	"organization":     {"create", "read", "list", "update", "delete"},
	"approval_request": {"create", "read", "list", "approve", "reject"},
	"permission":       {"read", "list", "check"},
	"subscription":     {"create", "read", "list", "update", "cancel"},
	"recieve_payment":  {"create", "read", "list"},
	"reviews":          {"create", "read", "list", "update", "delete"},
	"user_query":       {"create", "read", "list", "respond"},
	"role":             {"create", "read", "list", "update", "delete", "assign"},
	"appointment":      {"create", "read", "list", "update", "cancel"},
	"invoice":          {"create", "read", "list"},
	"report":           {"read", "export"},
	"settings":         {"read", "update"},
	"doctor":           {"create", "read", "list", "update"},
	"clinic":           {"read", "list", "update", "approve-doctor"},
	"audit_log":        {"read", "list"},
}

// pluginDefaults are granted to ADMIN on top of the catalogue by the auth adapter.
var pluginDefaults = map[string][]string{
	"user":    {"impersonate", "ban"},
	"session": {"list", "revoke"},
}

// roleGrants is the static grant table of the non-admin fixed roles.
// A resource absent from a role's table grants nothing on it. GUEST has no grants.
var roleGrants = map[model.SystemRole]map[string][]string{
	model.RolePatient: {
		"user":         {"read", "update"},
		"appointment":  {"create", "read", "list", "cancel"},
		"reviews":      {"create", "read", "list"},
		"user_query":   {"create", "read"},
		"invoice":      {"read", "list"},
		"subscription": {"read"},
		"doctor":       {"read", "list"},
		"clinic":       {"read", "list"},
	},
	model.RoleDoctor: {
		"user":             {"read", "update"},
		"doctor":           {"read", "update"},
		"approval_request": {"create", "read"},
		"appointment":      {"read", "list", "update"},
		"reviews":          {"read", "list"},
		"user_query":       {"read", "respond"},
		"invoice":          {"read", "list"},
		"report":           {"read"},
		"clinic":           {"read"},
	},
	model.RoleClinic: {
		"user":             {"read", "update"},
		"clinic":           {"read", "update", "approve-doctor"},
		"doctor":           {"create", "read", "list", "update"},
		"approval_request": {"create", "read", "list", "approve", "reject"},
		"appointment":      {"create", "read", "list", "update", "cancel"},
		"invoice":          {"create", "read", "list"},
		"recieve_payment":  {"read", "list"},
		"report":           {"read"},
		"settings":         {"read"},
	},
	model.RoleGuest: {},
}

// adminGrants is the catalogue merged with the plugin defaults.
var adminGrants = merge(statements, pluginDefaults)

func merge(tables ...map[string][]string) map[string][]string {
	out := map[string][]string{}
	for _, t := range tables {
		for resource, actions := range t {
			for _, a := range actions {
				if !contains(out[resource], a) {
					out[resource] = append(out[resource], a)
				}
			}
		}
	}
	return out
}

func contains(actions []string, action string) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

func flatten(t map[string][]string) []model.Statement {
	var out []model.Statement
	for resource, actions := range t {
		for _, a := range actions {
			out = append(out, model.Statement{Resource: resource, Action: a})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// Catalogue returns every catalogue statement, sorted.
func Catalogue() []model.Statement {
	return flatten(statements)
}

// AdminStatements returns the ADMIN grant set: the catalogue plus plugin defaults.
func AdminStatements() []model.Statement {
	return flatten(adminGrants)
}

// InCatalogue reports whether (resource, action) may be granted at all.
func InCatalogue(resource, action string) bool {
	return contains(adminGrants[resource], action)
}

// RoleStatements returns the static grants of role. ADMIN yields AdminStatements.
func RoleStatements(role model.SystemRole) []model.Statement {
	if role == model.RoleAdmin {
		return AdminStatements()
	}
	return flatten(roleGrants[role])
}

// Granted reports whether the fixed role statically holds (resource, action).
func Granted(role model.SystemRole, resource, action string) bool {
	if role == model.RoleAdmin {
		return true
	}
	return contains(roleGrants[role][resource], action)
}
