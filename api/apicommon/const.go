package apicommon

// MetadataKey is the type used for context values set by the API middlewares.
type MetadataKey string

// UserMetadataKey is the key used to store the authenticated user in the
// request context.
const UserMetadataKey MetadataKey = "user"
