// Package server exposes the HTTP API and the websocket endpoint.
//
// The HTTP surface is a thin boundary: handlers parse wire shapes, delegate
// to the chat and catalog services, and map the shared error taxonomy onto
// status codes. Every response uses the {success, message, data} envelope.
//
// The websocket endpoint at /ws relays broadcaster events to connected
// clients. A connection declares its identity with a join-admin or join-user
// frame and is then subscribed to the matching audience. Join frames are
// accepted without authentication: any client may claim any identity. This
// matches the deployment assumption of a trusted frontend; all message
// payloads are still validated server side before persistence.
package server
