// internal/model/flow.go
package model

import "time"

// Flow holds the message template/logic a campaign sends. Managed
// elsewhere; the dispatch core only reads the reference.
type Flow struct {
    ID         int       `db:"id" json:"id"`
    Name       string    `db:"name" json:"name"`
    Definition string    `db:"definition" json:"definition"`
    CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Segment is an audience filter. Resolution currently targets all
// users, so the reference is carried but not evaluated.
type Segment struct {
    ID        int       `db:"id" json:"id"`
    Name      string    `db:"name" json:"name"`
    Rules     string    `db:"rules" json:"rules"`
    CreatedAt time.Time `db:"created_at" json:"created_at"`
}
