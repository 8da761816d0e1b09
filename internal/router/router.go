package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4" // import the Echo web framework to handle routing
    "github.com/redis/go-redis/v9"

    "github.com/edunest/hostel-allocation/internal/config"
    "github.com/edunest/hostel-allocation/internal/handler"    // handlers that implement the API surface
    "github.com/edunest/hostel-allocation/internal/middleware" // middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check, used
// by load balancers and monitoring to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
}

// RegisterAPI wires the allocation API under /v1.  All routes require a
// valid access token from the school's identity service; mutations are
// additionally role-gated.  Read endpoints go through the Redis response
// cache, everything through the distributed rate limiter.  rdb may be nil,
// in which case caching and rate limiting degrade to no-ops.
func RegisterAPI(e *echo.Echo, alloc *handler.AllocationHandler, hostels *handler.HostelHandler, reports *handler.ReportHandler, jwtSecret string, rdb *redis.Client) {
    cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
    limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

    v1 := e.Group("/v1")
    v1.Use(middleware.JWTAuth(jwtSecret))
    v1.Use(limit)

    // Staff-wide reads.  Both roles browse availability and ledgers; the
    // response cache keeps the hot listing endpoints off the database.
    read := v1.Group("", middleware.RequireRole(middleware.RoleAdmin, middleware.RoleWarden))
    read.GET("/allocations/:id", alloc.Get, cache)
    read.GET("/students/:id/allocations", alloc.ListByStudent, cache)
    read.GET("/hostels/:id/rooms", hostels.ListRooms, cache)
    read.GET("/hostels/:id/availability", hostels.Availability, cache)
    read.GET("/schools/:id/hostels", hostels.ListAvailable, cache)
    read.GET("/schools/:id/reports/occupancy", reports.Occupancy, cache)
    read.GET("/schools/:id/reports/utilization", reports.Utilization, cache)
    read.GET("/schools/:id/reports/revenue", reports.Revenue, cache)

    // Lifecycle mutations are warden work; admins may also perform them.
    warden := v1.Group("", middleware.RequireRole(middleware.RoleAdmin, middleware.RoleWarden))
    warden.POST("/allocations", alloc.Create)
    warden.POST("/allocations/:id/check-in", alloc.CheckIn)
    warden.POST("/allocations/:id/check-out", alloc.CheckOut)
    warden.POST("/allocations/:id/transfer", alloc.Transfer)
    warden.POST("/allocations/:id/suspend", alloc.Suspend)
    warden.POST("/allocations/:id/reactivate", alloc.Reactivate)
    warden.POST("/allocations/:id/payments", alloc.RecordPayment)

    // Capacity administration is admin-only.
    admin := v1.Group("", middleware.RequireRole(middleware.RoleAdmin))
    admin.POST("/hostels", hostels.Create)
    admin.POST("/hostels/:id/rooms", hostels.CreateRoom)
    admin.POST("/hostels/bulk/status", hostels.BulkStatus)
    admin.POST("/hostels/bulk/facilities", hostels.BulkFacilities)
}
