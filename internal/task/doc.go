// Package task manages background work queuing, execution, and tracking.
// It provides the bounded executor that runs text ingestions without
// blocking HTTP request handling, and the ingestion work function itself.
// Tasks are tracked only in process memory; after a restart the resume
// coordinator reconciles sessions whose tasks were lost.
package task
