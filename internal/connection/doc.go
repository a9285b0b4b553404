// Package connection drives a heart rate peripheral from dial to streaming.
//
// Each session walks Connecting → ServiceDiscovery → EnablingNotifications →
// Streaming and ends in Disconnected or Failed. One loop goroutine per session
// performs every transition; radio calls run on helper goroutines that only
// post their results back to the loop.
package connection
