// Package types contains common types and store key names used across the application.
package types

// Logical store keys. A deployment-wide prefix is applied by the store.
const (
	CounterKey     = "global_count"
	LeaderboardKey = "leaderboard"
	userKeyPrefix  = "user:"
)

// DefaultName is shown for users who never chose a name.
const DefaultName = "Anonymous"

// UserKey returns the hash key holding id's attributes.
func UserKey(id string) string { return userKeyPrefix + id }

// Attribute names a logical user attribute.
type Attribute string

// Logical attributes.
const (
	AttrName   Attribute = "name"
	AttrAdmin  Attribute = "admin"
	AttrBanned Attribute = "banned"
)

// Flags are the resolved boolean attributes of a user.
type Flags struct {
	Admin  bool `json:"admin"`
	Banned bool `json:"banned"`
}

// Profile is a caller's view of their own record.
type Profile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Admin  bool   `json:"admin"`
	Banned bool   `json:"banned"`
}

// ScoredMember is a raw leaderboard row as stored.
type ScoredMember struct {
	ID    string
	Score float64
}

// Leader is a visible leaderboard row.
type Leader struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Stats summarizes global state for administrators.
type Stats struct {
	GlobalCount     int64 `json:"global_count"`
	LeaderboardSize int64 `json:"leaderboard_size"`
}

// ResetScope selects what an administrative reset clears.
type ResetScope string

// Reset scopes.
const (
	ResetCount       ResetScope = "count"
	ResetLeaderboard ResetScope = "leaderboard"
	ResetAll         ResetScope = "all"
)

// Valid reports whether s is a known scope.
func (s ResetScope) Valid() bool {
	switch s {
	case ResetCount, ResetLeaderboard, ResetAll:
		return true
	}
	return false
}
