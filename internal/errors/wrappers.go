package errors

import "fmt"

// WrapWithOperation reports that operation on item failed
func WrapWithOperation(operation, item string, cause error) *Error {
	return Wrap(UnknownErrorCode, fmt.Sprintf("%s %s", operation, item), cause)
}

// WrapFileSystemError reports a failed read, write or removal of a file
// written or cleaned by packed generate
func WrapFileSystemError(operation, path string, cause error) *Error {
	return Wrap(FileSystemErrorCode, fmt.Sprintf("%s %s", operation, path), cause).
		WithContext("operation", operation).
		WithContext("path", path)
}

// WrapTemplateError reports a template that failed to parse or execute
func WrapTemplateError(name, operation string, cause error) *Error {
	return Wrap(TemplateErrorCode, fmt.Sprintf("%s template %s", operation, name), cause).
		WithContext("template", name)
}

// WrapConfigurationError reports a configuration key that could not be read
func WrapConfigurationError(key, operation string, cause error) *Error {
	return Wrap(ConfigurationErrorCode, fmt.Sprintf("%s configuration key %s", operation, key), cause).
		WithContext("key", key)
}

// ConfigurationError reports a problem with a configuration key
func ConfigurationError(key, message string) *Error {
	return New(ConfigurationErrorCode, fmt.Sprintf("configuration key %s: %s", key, message)).
		WithContext("key", key)
}

// WrapDependencyError reports a service key the bean at requiredBy needs
// but could not get
func WrapDependencyError(key, requiredBy string, cause error) *Error {
	return Wrap(DependencyErrorCode, fmt.Sprintf("service %s required by %s", key, requiredBy), cause).
		WithContext("key", key).
		WithContext("required_by", requiredBy)
}

// WrapExtensionError reports an extension that failed an operation
func WrapExtensionError(extension, operation string, cause error) *Error {
	return Wrap(ExtensionErrorCode, fmt.Sprintf("extension %s: %s", extension, operation), cause).
		WithContext("extension", extension)
}

// WrapHookError reports a hook annotation on a bean member that could not be
// scanned or routed
func WrapHookError(beanType, member string, cause error) *Error {
	return Wrap(HookErrorCode, fmt.Sprintf("hook on %s.%s", beanType, member), cause).
		WithContext("bean_type", beanType).
		WithContext("member", member)
}

// WrapLifecycleError reports a failed initialize, start, stop or release
func WrapLifecycleError(phase string, cause error) *Error {
	return Wrap(LifecycleErrorCode, phase+" failed", cause).
		WithContext("phase", phase)
}
