package catalog

// RestrictedRatings are certification codes hidden when the content filter
// is on. Korean (18, 19, Restricted) and MPAA (R, NC-17) codes share a column.
var RestrictedRatings = []string{"18", "19", "Restricted", "R", "NC-17"}

func IsRestricted(rating string) bool {
	for _, r := range RestrictedRatings {
		if r == rating {
			return true
		}
	}
	return false
}
