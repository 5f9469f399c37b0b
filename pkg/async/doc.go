// Package async provides safe goroutine execution for fire-and-forget
// background work.
package async
