package jobs

// 任务名称.
const (
	JobPayloadAudit = "vault.payload_audit"
	JobOrphanSweep  = "blob.orphan_sweep"
)
