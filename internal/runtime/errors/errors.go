package errors

import sterrors "errors"

var (
	ErrScopeRequired           = sterrors.New("serveflow: scope is required")
	ErrHookRequired            = sterrors.New("serveflow: hook function is required")
	ErrHookNameRequired        = sterrors.New("serveflow: hook name is required")
	ErrUnknownHookPhase        = sterrors.New("serveflow: unknown hook phase")
	ErrScopedOnRequest         = sterrors.New("serveflow: onRequest hooks must be registered on the server scope")
	ErrServerFrozen            = sterrors.New("serveflow: registration is closed once serving has started")
	ErrReplyAlreadySent        = sterrors.New("serveflow: reply already sent")
	ErrHandlerRequired         = sterrors.New("serveflow: route handler is required")
	ErrRouteMethodRequired     = sterrors.New("serveflow: route method is required")
	ErrRoutePathRequired       = sterrors.New("serveflow: route path is required")
	ErrBodyTypeRequired        = sterrors.New("serveflow: request body type is required")
	ErrBodyPointerNeeded       = sterrors.New("serveflow: request body type must be a pointer")
	ErrPluginNameRequired      = sterrors.New("serveflow: plugin name is required")
	ErrPluginSetupRequired     = sterrors.New("serveflow: plugin setup function is required")
	ErrPluginAlreadyRegistered = sterrors.New("serveflow: plugin already registered")
	ErrPluginDependency        = sterrors.New("serveflow: plugin dependency not satisfied")
	ErrDecoratorNameRequired   = sterrors.New("serveflow: decorator name is required")
	ErrDecoratorConflict       = sterrors.New("serveflow: decorator name already in use")
	ErrDecoratorNotFound       = sterrors.New("serveflow: decoration not found")
	ErrDecoratorFactory        = sterrors.New("serveflow: decorator factory function is required")
	ErrSchemaID                = sterrors.New("serveflow: schema document has no $id")
	ErrSchemaDuplicate         = sterrors.New("serveflow: schema id already registered")
	ErrSchemaNotFound          = sterrors.New("serveflow: schema not found")
	ErrContentTypeRequired     = sterrors.New("serveflow: content type is required")
	ErrParserRequired          = sterrors.New("serveflow: body parser function is required")
	ErrResponseInvalid         = sterrors.New("serveflow: response does not match the declared schema")
	ErrPublisherRequired       = sterrors.New("serveflow: event publisher is required")
	ErrTopicRequired           = sterrors.New("serveflow: event topic is required")
)
