package navigation

import (
	"strings"

	"github.com/starford/subwiki/internal/models"
)

// RootLabel is the label of the first crumb.
const RootLabel = "Root"

// Breadcrumbs returns the root crumb followed by one crumb per level of
// path. The last level is marked active.
func Breadcrumbs(path []string) []models.Breadcrumb {
	crumbs := make([]models.Breadcrumb, 0, len(path)+1)
	crumbs = append(crumbs, models.Breadcrumb{Label: RootLabel, Target: ""})
	for i, seg := range path {
		crumbs = append(crumbs, models.Breadcrumb{
			Label:  seg,
			Target: strings.Join(path[:i+1], "/"),
			Active: i == len(path)-1,
		})
	}
	return crumbs
}
