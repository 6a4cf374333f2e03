package rbac

// Default policy. Students take quizzes and see their own results; admins
// manage the catalog, users and reports.
var RolePermissions = map[string][]string{
	"student": {
		"subject:view",
		"quiz:view",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
		"report:view-own",
		"search",
	},
	"admin": {
		"*", // everything
	},
}
