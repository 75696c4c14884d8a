// Package site answers a single request on a raw connection.
//
// The handler reads one buffer from the connection. If it starts with the
// request line "GET / HTTP/1.1\r\n" the index page is sent with a 200 status
// line; anything else gets the not-found page with a 404 status line. There
// is no further HTTP parsing.
//
// PageCache optionally keeps page contents in memory and drops entries when
// fsnotify reports a change under the site root.
package site
