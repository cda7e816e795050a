// Package tokens issues and verifies the HS256 JSON Web Tokens used by the
// warrant auth server.
//
// There are two kinds of token, each signed with its own key:
//
//   - Access: short-lived, carries the subject and role, sent as a Bearer
//     credential on every protected request.
//   - Refresh: long-lived, carries only the subject, lives in an HttpOnly
//     cookie and is exchanged for a fresh pair.
//
// Every token carries the claim set
//
//	{"ver":1,"typ":"access","sub":"...","role":"...","iat":...,"exp":...}
//
// with "role" present only on access tokens. Verification rejects any token
// whose header algorithm is not HS256, whose claims are missing or carry
// extra members, or whose exp is at or before the current time.
//
// # Usage
//
//	codec, err := tokens.NewCodec(accessKey, refreshKey)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	access, err := codec.IssueAccess(userID, "editor", 15*time.Minute)
//	refresh, err := codec.IssueRefresh(userID, 7*24*time.Hour)
//
//	token, err := codec.VerifyAccess(access.Encoded())
//	switch {
//	case errors.Is(err, tokens.ErrTokenExpired()):
//	    // worth refreshing
//	case err != nil:
//	    // tampered or malformed
//	}
package tokens
