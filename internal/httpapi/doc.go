// Package httpapi serves the workflow engine over HTTP.
//
// Routes are registered on a gorilla/mux router under /api and return the
// camelCase DTOs from package api. Engine errors map onto status codes by
// taxonomy: structural 400 (404 for unknown jobs), validation 422, conflict
// 409, upstream 503. Rejections carry the validator verdict so clients can
// retry with override. When a token is configured every /api route requires
// "Authorization: Bearer <token>"; /metrics stays open for scrapers.
package httpapi
