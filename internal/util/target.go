package util

import "strings"

// ShortTargetName trims provider-qualified identifiers down to the name a
// human would type. It understands:
//
//	arn:aws:eks:us-east-1:123456789012:cluster/prod      -> prod
//	gke_my-project_us-central1-a_prod                    -> prod
//	/subscriptions/<id>/resourceGroups/rg/.../clusters/x -> x
//
// Anything else is returned unchanged.
func ShortTargetName(name string) string {
	switch {
	case strings.HasPrefix(name, "arn:"):
		if idx := strings.LastIndex(name, "cluster/"); idx != -1 {
			return name[idx+len("cluster/"):]
		}
		if idx := strings.LastIndex(name, "/"); idx != -1 {
			return name[idx+1:]
		}
		if idx := strings.LastIndex(name, ":"); idx != -1 {
			return name[idx+1:]
		}
		return name

	case strings.HasPrefix(name, "gke_"):
		// gke_<project>_<location>_<cluster>; cluster names cannot contain '_'
		parts := strings.Split(name, "_")
		if len(parts) >= 4 {
			return parts[len(parts)-1]
		}
		return name

	case strings.HasPrefix(strings.ToLower(name), "/subscriptions/"):
		trimmed := strings.TrimRight(name, "/")
		if idx := strings.LastIndex(trimmed, "/"); idx != -1 {
			return trimmed[idx+1:]
		}
		return name
	}

	return name
}
