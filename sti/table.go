package sti

import (
	"strings"

	"gorm.io/gorm/schema"
)

var tableNaming = schema.NamingStrategy{}

// DeriveTable returns the default shared table for a hierarchy rooted at
// root: the unqualified type name, snake_cased and pluralized.
// "fleet.Vehicle" becomes "vehicles", "BlogPost" becomes "blog_posts".
func DeriveTable(root string) string {
	base := root
	if i := strings.LastIndexAny(base, `./\`); i >= 0 {
		base = base[i+1:]
	}
	if base == "" {
		return ""
	}
	return tableNaming.TableName(base)
}
