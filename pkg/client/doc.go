// Package client manages an access token on behalf of a browser-like caller
// of a warrant server.
//
// The access token is kept in memory only. The refresh token is an HttpOnly
// cookie held by the Manager's cookie jar and is never visible to callers.
//
// # Quick Start
//
//	m, err := client.New("https://auth.example.com")
//	if err != nil {
//	    return err
//	}
//	if _, err := m.Login(ctx, email, password); err != nil {
//	    return err
//	}
//	m.Start(ctx) // refresh shortly before expiry
//
//	req, _ := http.NewRequestWithContext(ctx, "GET", "https://auth.example.com/api/me", nil)
//	res, err := m.Do(req)
//	if errors.Is(err, client.ErrSessionEnded) {
//	    // send the user back to the login page
//	}
//
// # Refresh
//
// When a request comes back 401, Do refreshes the access token and retries
// the request once. Concurrent requests that see the same expired token
// share a single refresh call. A failed refresh ends the session, whether
// the server refused it, answered with an error status, or did not answer
// within the refresh timeout: the token is dropped, SessionEnded is closed,
// and every waiting request fails with an error matching ErrSessionEnded
// that also wraps the original *APIError and the refresh failure.
package client
