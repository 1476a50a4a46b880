package queue

// 主题命名：cv.<域>.<动作>.
const (
	TopicRecordUploaded   = "cv.record.uploaded"   // 病历已入库（含可选文档）
	TopicRecordDownloaded = "cv.record.downloaded" // 原始文档被下载
	TopicRecordDecrypted  = "cv.record.decrypted"  // 加密正文被解密查看
	TopicRecordReceived   = "cv.record.received"   // 接收方核对了病历
	TopicRecordSearched   = "cv.record.searched"   // 按姓名查询

	TopicAuditPayloadCompleted = "cv.audit.payload.completed" // 密文巡检完成
)

// RecordTopics 病历领域全部主题.
var RecordTopics = []string{
	TopicRecordUploaded,
	TopicRecordDownloaded,
	TopicRecordDecrypted,
	TopicRecordReceived,
	TopicRecordSearched,
}

var actionTopics = map[string]string{
	"upload":   TopicRecordUploaded,
	"download": TopicRecordDownloaded,
	"decrypt":  TopicRecordDecrypted,
	"receive":  TopicRecordReceived,
	"search":   TopicRecordSearched,
}

// TopicForAction 返回操作日志动作对应的主题.
func TopicForAction(action string) (string, bool) {
	t, ok := actionTopics[action]

	return t, ok
}
