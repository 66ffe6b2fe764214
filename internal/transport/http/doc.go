// Package http implements the HTTP handlers of the resample service.
// Handlers stay thin: they decode and validate the request, hand the
// work to the service layer and render the result.
//
// # Request Flow
//
//	HTTP Request → Chi Router → Middleware → Handler → ResampleService
//
// # Error Handling
//
// Every failure is rendered as RFC 7807 Problem Details through
// errors.ErrorHandler:
//
//	{
//	    "type": "/problems/validation",
//	    "title": "Validation Failed",
//	    "status": 400,
//	    "detail": "group key column \"region\" not found",
//	    "instance": "/api/v1/resample"
//	}
//
// Tables above the configured row limit are refused with 413, unknown
// aggregation functions with 422.
//
// # Testing
//
// Handlers are tested with httptest against a mocked service interface.
package http
