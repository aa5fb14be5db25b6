// Package models defines the value records produced and served by deezify.
//
// The package contains three groups of types:
//
// 1. Catalog records read from Spotify
//   - [CatalogTrack] : a playable track with trimmed name and ordered artist names
//   - [CatalogPlaylist] : one full, fully paginated fetch of a playlist and its snapshot id
//
// 2. Derived records served to the UI
//   - [MatchedTrack] : a track enriched with Deezer preview data, or a synthesized fallback
//   - [DerivedPlaylist] : the playlist with one MatchedTrack per catalog track, in order
//   - [PlaylistEntry] : the cached unit, a DerivedPlaylist plus the snapshot id it was built from
//
// 3. Weather records
//   - [WeatherQuery] : validated coordinates, timezone and unit system
//   - [WeatherPayload] : current conditions mapped onto a closed [WeatherKind] taxonomy
//
// Records are immutable once produced; caches replace them wholesale on refresh.
// Optional upstream fields are pointers so they serialize as JSON null.
package models
