package contextkeys

type contextKey string

// DBContextKey stores the request-scoped *gorm.DB in the gin context.
const DBContextKey = contextKey("db")

// UserContextKey stores the resolved identity in the gin context.
const UserContextKey = contextKey("user")
