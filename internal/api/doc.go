// Package api provides the Polymarket CLOB REST client.
//
// Endpoints:
//   - Markets catalog: GET /markets (cursor-paginated; the venue ends
//     pagination with an HTTP 400 complaining "next item should be greater
//     than or equal to 0" rather than an empty page)
//   - Order book: GET /book?token_id=...
//   - Single market: GET /markets/{condition_id}
//
// Market-data endpoints are public; an API key, when configured, is only
// presented as a bearer header.
package api
