// Package domain contains the core entities of the application: users,
// posts, task records, and notifications. Entities are plain structs with
// their own validation; persistence lives in the store packages.
package domain
