// Package services implements the clients for the third-party APIs deezify composes.
//
// # Upstreams
//
// Every outbound call goes through an [Upstream]: one HTTP client and one circuit breaker per API
// (spotify-accounts, spotify-api, deezer, open-meteo). Failures are returned as [shared.UpstreamError]
// values that unwrap to an error kind:
//   - [shared.ErrUpstreamUnavailable] : network failure, or the breaker is open
//   - [shared.ErrUpstreamRejected] : non-2xx response
//   - [shared.ErrUpstreamMalformed] : 2xx response missing required fields
//   - [shared.ErrNotFound] : 404 on endpoints that address a single playlist
//
// Only unavailability and 5xx rejections count towards tripping a breaker.
//
// # Spotify
//
// [SpotifyService] exchanges client credentials for an app token (cached for 50 minutes), probes a
// playlist's snapshot id and drains its track pages sequentially in cursor order.
//
// # Deezer
//
// [DeezerService] matches a catalog track to a Deezer track with a paced search (limit 5) and a
// normalized title/artist selection policy. Results, including "no match", are cached for 30 minutes.
//
// # Open-Meteo
//
// [WeatherService] caches current conditions for 5 minutes and maps WMO codes onto [models.WeatherKind].
package services
