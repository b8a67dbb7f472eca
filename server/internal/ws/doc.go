// Package ws implements the live calculation feed for uvdose-server.
//
// New(history, interval, size) creates a Hub. Hub.Run(ctx) polls the history
// store every interval and pushes the newest size records to every client
// when they have changed. Hub.ServeHTTP upgrades a connection and sends the
// current feed immediately.
//
// Message format:
//
//	{
//	  "event": "history",
//	  "data":  { /* same schema as GET /api/v1/history */ }
//	}
//
// All origins are accepted. The server mounts the hub at /ws/feed.
package ws
