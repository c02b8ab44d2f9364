/**
 * Package di provides dependency injection type definitions.
 *
 * The Container holds every long-lived instance of the process and is the
 * single source of truth handed to the HTTP server and the scheduler.
 */
package di

import (
	"github.com/aristath/findata/internal/clientdata"
	"github.com/aristath/findata/internal/clients/financialdatasets"
	"github.com/aristath/findata/internal/database"
	"github.com/aristath/findata/internal/events"
	"github.com/aristath/findata/internal/freshness"
	"github.com/aristath/findata/internal/memcache"
	"github.com/aristath/findata/internal/resolver"
	"github.com/aristath/findata/internal/scheduler"
	"github.com/aristath/findata/internal/services"
)

/**
 * Container holds all dependencies for the application.
 *
 * Layers:
 * - ClientDataDB / ClientDataRepo: the persistent layer (nil in direct mode)
 * - MemoryCache: the process-local layer
 * - RemoteClient: Financial Datasets HTTP client
 * - Resolver / DataService: the lookup chain and its typed façade
 */
type Container struct {
	// Persistent layer
	ClientDataDB   *database.DB
	ClientDataRepo *clientdata.Repository

	// Resolution chain
	Policy       *freshness.Policy
	MemoryCache  *memcache.Cache
	RemoteClient *financialdatasets.Client
	Stats        *events.StatsRecorder
	Resolver     *resolver.Resolver
	DataService  *services.HybridDataService

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// JobInstances holds references to registered jobs for manual triggering.
// A field is nil when the job is disabled.
type JobInstances struct {
	WALCheckpoint *scheduler.WALCheckpointJob
	WarmCache     *scheduler.WarmCacheJob
	Purge         *clientdata.PurgeJob
}

// Close releases resources held by the container.
func (c *Container) Close() error {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.ClientDataDB != nil {
		return c.ClientDataDB.Close()
	}
	return nil
}
