package bsky

import "time"

// Session holds an authenticated AT Protocol session.
// Tokens in a Session are plaintext and live only in memory; persistence
// always goes through the seal cipher.
type Session struct {
	DID        string
	Handle     string
	AccessJwt  string
	RefreshJwt string
}

// Profile is the directory view of an external account.
type Profile struct {
	DID         string
	Handle      string
	DisplayName string
}

// Reply is one external reply under a broadcast post's thread.
type Reply struct {
	URI          string
	CID          string
	AuthorDID    string
	AuthorHandle string
	Text         string
	CreatedAt    time.Time
}

// Engagement holds aggregate counts for a single external post.
type Engagement struct {
	Likes   int
	Reposts int
	Replies int
}
