// Package domain models the weather synchronization between OpenWeatherMap
// observations and a Minecraft server's weather.
//
// # Data Source
//
// Observations come from the OpenWeatherMap One Call API
// (https://openweathermap.org/api/one-call-3). Only one field is used:
//
//	current.weather[0].main  →  e.g. "Clear", "Clouds", "Rain", "Thunderstorm"
//
// The "main" value is the weather condition group. OpenWeatherMap also
// returns groups such as "Mist", "Smoke", "Haze", "Dust", "Fog", "Sand",
// "Ash", "Squall" and "Tornado". Those have no Minecraft equivalent and
// classify as Unknown.
//
// # Sync States
//
// Minecraft only knows clear, rain and thunder. This service uses two of
// them and keeps a third, internal value:
//
//	Clear:   "Clear", "Clouds"
//	Rain:    "Rain", "Drizzle", "Snow", "Thunderstorm"
//	Unknown: everything else, including the empty string
//
// Matching is case-sensitive. Unknown is applied to the server as clear
// weather but persisted as "Unknown", so a reading that could not be
// classified never looks like a confirmed Clear reading on the next cycle.
//
// # Idempotence
//
// The last applied state is persisted in a single slot. A cycle that
// classifies to the persisted state skips the remote console command and
// only rewrites the slot. See [CycleResult] for the reported outcomes.
package domain
