// Package http provides HTTP handlers and middleware for the MeetSync API.
//
// The router exposes the following endpoints:
//   - POST /rooms: creates a room. Body: {"name","startDate","endDate","creatorName"}.
//     Response 201: {"room","user"} where user is the creator.
//   - GET /rooms?user=NAME: rooms with a member of that name, ordered by room name.
//     Response: {"rooms"}.
//   - GET /rooms/{id}: Response {"room"}.
//   - POST /rooms/{id}/members: joins or re-enters by name. Body {"name"}.
//     Response {"room","user"}.
//   - PUT /rooms/{id}/schedules/{userId}: replaces the user's slots. Body {"slots"}.
//   - POST /rooms/{id}/schedules/{userId}/toggle: flips one slot. Body {"slot"}.
//   - GET /rooms/{id}/availability?viewer=ID: {"room","grid","participants"}.
//   - GET /rooms/{id}/live?user=ID: WebSocket stream of "snapshot" frames, see
//     live_handler.go for the frame format.
//   - GET /healthz and GET /metrics.
//
// Errors are returned as errorResponse with zh-TW messages. Validation
// failures use 422, unknown rooms 404, storage failures 503, malformed bodies
// 400 and rate limited clients 429.
package http
