// Package sources adapts the platform APIs to the archiver. Each source
// selects creators, lists their posts as summaries and turns a fetched
// post into the platform-neutral model.
package sources
