package errors

import (
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	// Verify sentinel errors have expected messages
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"ErrHookRequired", ErrHookRequired, "serveflow: hook function is required"},
		{"ErrHookNameRequired", ErrHookNameRequired, "serveflow: hook name is required"},
		{"ErrUnknownHookPhase", ErrUnknownHookPhase, "serveflow: unknown hook phase"},
		{"ErrScopedOnRequest", ErrScopedOnRequest, "serveflow: onRequest hooks must be registered on the server scope"},
		{"ErrServerFrozen", ErrServerFrozen, "serveflow: registration is closed once serving has started"},
		{"ErrReplyAlreadySent", ErrReplyAlreadySent, "serveflow: reply already sent"},
		{"ErrHandlerRequired", ErrHandlerRequired, "serveflow: route handler is required"},
		{"ErrRouteMethodRequired", ErrRouteMethodRequired, "serveflow: route method is required"},
		{"ErrRoutePathRequired", ErrRoutePathRequired, "serveflow: route path is required"},
		{"ErrBodyTypeRequired", ErrBodyTypeRequired, "serveflow: request body type is required"},
		{"ErrBodyPointerNeeded", ErrBodyPointerNeeded, "serveflow: request body type must be a pointer"},
		{"ErrPluginNameRequired", ErrPluginNameRequired, "serveflow: plugin name is required"},
		{"ErrPluginSetupRequired", ErrPluginSetupRequired, "serveflow: plugin setup function is required"},
		{"ErrPluginAlreadyRegistered", ErrPluginAlreadyRegistered, "serveflow: plugin already registered"},
		{"ErrPluginDependency", ErrPluginDependency, "serveflow: plugin dependency not satisfied"},
		{"ErrDecoratorNameRequired", ErrDecoratorNameRequired, "serveflow: decorator name is required"},
		{"ErrDecoratorConflict", ErrDecoratorConflict, "serveflow: decorator name already in use"},
		{"ErrDecoratorNotFound", ErrDecoratorNotFound, "serveflow: decoration not found"},
		{"ErrDecoratorFactory", ErrDecoratorFactory, "serveflow: decorator factory function is required"},
		{"ErrSchemaID", ErrSchemaID, "serveflow: schema document has no $id"},
		{"ErrSchemaDuplicate", ErrSchemaDuplicate, "serveflow: schema id already registered"},
		{"ErrSchemaNotFound", ErrSchemaNotFound, "serveflow: schema not found"},
		{"ErrContentTypeRequired", ErrContentTypeRequired, "serveflow: content type is required"},
		{"ErrParserRequired", ErrParserRequired, "serveflow: body parser function is required"},
		{"ErrResponseInvalid", ErrResponseInvalid, "serveflow: response does not match the declared schema"},
		{"ErrPublisherRequired", ErrPublisherRequired, "serveflow: event publisher is required"},
		{"ErrTopicRequired", ErrTopicRequired, "serveflow: event topic is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	seen := map[string]string{}
	errs := map[string]error{
		"ErrHookRequired":            ErrHookRequired,
		"ErrUnknownHookPhase":        ErrUnknownHookPhase,
		"ErrReplyAlreadySent":        ErrReplyAlreadySent,
		"ErrPluginAlreadyRegistered": ErrPluginAlreadyRegistered,
		"ErrPluginDependency":        ErrPluginDependency,
		"ErrDecoratorConflict":       ErrDecoratorConflict,
		"ErrSchemaNotFound":          ErrSchemaNotFound,
	}
	for name, err := range errs {
		if prev, ok := seen[err.Error()]; ok {
			t.Errorf("%s shares a message with %s", name, prev)
		}
		seen[err.Error()] = name
	}
}
