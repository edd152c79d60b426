// Package mysql persists conversation memories. It ships a JSON-lines file
// repository for local runs and a MySQL repository that applies the embedded
// schema migrations on startup.
package mysql
