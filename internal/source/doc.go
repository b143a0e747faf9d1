// Package source implements the listing source adapters: RSS feeds and HTML
// result pages, declared in a YAML catalog and kept in a fixed order by a
// Registry.
package source
