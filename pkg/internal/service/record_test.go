package service_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/carevault/pkg/cache"
	"github.com/yeisme/carevault/pkg/configs"
	ctxPkg "github.com/yeisme/carevault/pkg/context"
	"github.com/yeisme/carevault/pkg/crypt"
	"github.com/yeisme/carevault/pkg/extract"
	"github.com/yeisme/carevault/pkg/internal/keystore"
	"github.com/yeisme/carevault/pkg/internal/model"
	"github.com/yeisme/carevault/pkg/internal/service"
	"github.com/yeisme/carevault/pkg/internal/storage/blob"
	"github.com/yeisme/carevault/pkg/internal/storage/db"
	"github.com/yeisme/carevault/pkg/internal/storage/kv"
	"github.com/yeisme/carevault/pkg/internal/types"
)

type fixture struct {
	svc   *service.RecordService
	db    *db.Client
	blobs *blob.LocalStore
	keys  *kv.MemoryKV
}

type fixtureOption func(*service.Deps, *configs.VaultConfig)

func withCustody(c configs.KeyCustody) fixtureOption {
	return func(_ *service.Deps, v *configs.VaultConfig) { v.KeyCustody = c }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := configs.Default()
	cfg.DB.Database = filepath.Join(t.TempDir(), "records")
	cfg.DB.LogLevel = "silent"

	dbc, err := db.New(context.Background(), cfg.DB)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbc.Close() })
	require.NoError(t, dbc.Migrate(context.Background()))

	store := kv.NewMemoryKV()
	blobs := blob.NewLocalStore(afero.NewMemMapFs())

	deps := service.Deps{
		DB:     dbc,
		Blob:   blobs,
		Stats:  cache.New(store, "stats"),
		Ingest: cfg.Ingest,
	}
	vcfg := cfg.Vault

	for _, o := range opts {
		o(&deps, &vcfg)
	}

	deps.Vault, err = keystore.New(vcfg, store)
	require.NoError(t, err)

	return &fixture{svc: service.NewRecordService(deps), db: dbc, blobs: blobs, keys: store}
}

func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	var body strings.Builder
	for _, p := range paragraphs {
		fmt.Fprintf(&body, `<w:p><w:r><w:t xml:space="preserve">%s</w:t></w:r></w:p>`, p)
	}

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)

	_, err = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`+
		body.String()+`</w:body></w:document>`)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func ingestDoc(t *testing.T, f *fixture, pid, name, dept string, paragraphs ...string) *model.Record {
	t.Helper()

	rec, err := f.svc.Ingest(context.Background(), service.IngestInput{
		PatientID:   pid,
		PatientName: name,
		Department:  dept,
		Document:    &service.Upload{Name: "visit.docx", Blob: buildDocx(t, paragraphs...)},
	})
	require.NoError(t, err)

	return rec
}

func countRecords(t *testing.T, f *fixture) int64 {
	t.Helper()

	var n int64
	require.NoError(t, f.db.Model(&model.Record{}).Count(&n).Error)

	return n
}

func TestIngestRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := ctxPkg.WithActor(context.Background(), "dr.who")
	doc := buildDocx(t, "Diagnosis: stable", "Follow-up in 2 weeks")

	rec, err := f.svc.Ingest(ctx, service.IngestInput{
		PatientID:   " 42 ",
		PatientName: "Ada Lovelace",
		Department:  "cardiology",
		Comments:    "first visit",
		Document:    &service.Upload{Name: "../../Visit Notes.DOCX", Blob: doc},
	})
	require.NoError(t, err)

	assert.EqualValues(t, 42, rec.PatientID)
	assert.Equal(t, "Visit Notes.DOCX", rec.DocumentName)
	assert.True(t, strings.HasPrefix(rec.FilePath, "records/42/"), rec.FilePath)
	assert.True(t, strings.HasSuffix(rec.FilePath, "/Visit Notes.DOCX"), rec.FilePath)
	assert.EqualValues(t, len(doc), rec.Size)
	assert.NotEmpty(t, rec.Checksum)
	assert.NotEmpty(t, rec.ContentType)
	assert.Equal(t, string(configs.KeyCustodyInline), rec.KeyCustody)

	// inline 载荷: base64(key):base64(iv‖ct)
	p, err := crypt.ParsePayload(rec.EncryptedPayload)
	require.NoError(t, err)
	assert.Len(t, p.Key, crypt.KeySize)

	text, err := f.svc.DecryptRecord(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "Diagnosis: stable\nFollow-up in 2 weeks", text)

	rc, info, err := f.blobs.Open(ctx, rec.FilePath)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, doc, got)
	assert.EqualValues(t, len(doc), info.Size)

	page, err := f.svc.ListActionLogs(ctx, types.ListLogsQuery{PatientID: "42"})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	assert.Equal(t, model.ActionUpload, page.Items[0].Action)
	assert.Equal(t, "dr.who", page.Items[0].Actor)
}

func TestIngestWithoutDocument(t *testing.T) {
	f := newFixture(t)

	rec, err := f.svc.Ingest(context.Background(), service.IngestInput{PatientID: "7", PatientName: "Bob"})
	require.NoError(t, err)
	assert.False(t, rec.HasDocument())
	assert.False(t, rec.HasPayload())

	_, err = f.svc.DecryptRecord(context.Background(), rec)
	require.ErrorIs(t, err, service.ErrNoDocument)

	_, _, _, err = f.svc.OpenDocument(context.Background(), "7")
	require.ErrorIs(t, err, service.ErrNoDocument)
}

func TestIngestValidation(t *testing.T) {
	f := newFixture(t)

	cases := []service.IngestInput{
		{PatientID: "", PatientName: "Ada"},
		{PatientID: "12a", PatientName: "Ada"},
		{PatientID: "1.5", PatientName: "Ada"},
		{PatientID: "12", PatientName: "   "},
		{PatientID: "12", PatientName: "Ada", Department: strings.Repeat("x", 51)},
	}

	for _, in := range cases {
		_, err := f.svc.Ingest(context.Background(), in)
		assert.ErrorIs(t, err, service.ErrValidation, "%+v", in)
	}

	assert.Zero(t, countRecords(t, f))
}

func TestIngestRejectsUnsupportedFormatBeforeEncryption(t *testing.T) {
	f := newFixture(t, withCustody(configs.KeyCustodyKV))

	for _, name := range []string{"scan.pdf", "notes.doc", "README"} {
		_, err := f.svc.Ingest(context.Background(), service.IngestInput{
			PatientID:   "3",
			PatientName: "Cy",
			Document:    &service.Upload{Name: name, Blob: buildDocx(t, "x")},
		})
		require.ErrorIs(t, err, service.ErrUnsupportedFormat, name)
		require.ErrorIs(t, err, extract.ErrUnsupportedFormat, name)
	}

	keys, err := f.keys.Keys(context.Background(), "*")
	require.NoError(t, err)
	assert.Empty(t, keys, "no key may be generated for rejected uploads")

	objects, err := f.blobs.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, objects)
	assert.Zero(t, countRecords(t, f))
}

func TestIngestCorruptDocument(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Ingest(context.Background(), service.IngestInput{
		PatientID:   "3",
		PatientName: "Cy",
		Document:    &service.Upload{Name: "broken.docx", Blob: []byte("not a zip archive")},
	})
	require.ErrorIs(t, err, extract.ErrInvalidDocument)
	assert.Zero(t, countRecords(t, f))
}

func TestIngestKVCustody(t *testing.T) {
	f := newFixture(t, withCustody(configs.KeyCustodyKV))

	rec := ingestDoc(t, f, "9", "Dee", "neurology", "MRI clear")
	assert.True(t, strings.HasPrefix(rec.EncryptedPayload, "kv."), rec.EncryptedPayload)
	assert.Equal(t, string(configs.KeyCustodyKV), rec.KeyCustody)

	keys, err := f.keys.Keys(context.Background(), "*")
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	text, err := f.svc.DecryptRecord(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "MRI clear", text)
}

func TestIngestCompensatesWhenInsertFails(t *testing.T) {
	f := newFixture(t, withCustody(configs.KeyCustodyKV))
	require.NoError(t, f.db.Migrator().DropTable(&model.Record{}))

	_, err := f.svc.Ingest(context.Background(), service.IngestInput{
		PatientID:   "5",
		PatientName: "Eve",
		Document:    &service.Upload{Name: "visit.docx", Blob: buildDocx(t, "x")},
	})
	require.Error(t, err)

	objects, err := f.blobs.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, objects)

	keys, err := f.keys.Keys(context.Background(), "vault:*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestTamperedPayload(t *testing.T) {
	f := newFixture(t)
	rec := ingestDoc(t, f, "11", "Fay", "", "Blood type O+", "Allergy: penicillin")

	p, err := crypt.ParsePayload(rec.EncryptedPayload)
	require.NoError(t, err)

	// 改最后一块的密文会破坏填充或改变明文
	p.Ciphertext[len(p.Ciphertext)-crypt.BlockSize] ^= 0x01
	rec.EncryptedPayload = p.Encode()

	text, err := f.svc.DecryptRecord(context.Background(), rec)
	if err != nil {
		assert.True(t, errors.Is(err, crypt.ErrPadding) || errors.Is(err, crypt.ErrDecode), err)
	} else {
		assert.NotEqual(t, "Blood type O+\nAllergy: penicillin", text)
	}

	rec.EncryptedPayload = "not-base64!:also-not"
	_, err = f.svc.DecryptRecord(context.Background(), rec)
	assert.ErrorIs(t, err, crypt.ErrDecode)
}

func TestFindByPatientIDReturnsFirst(t *testing.T) {
	f := newFixture(t)

	first := ingestDoc(t, f, "100", "Gus", "a", "one")
	ingestDoc(t, f, "100", "Gus", "b", "two")

	got, err := f.svc.FindByPatientID(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = f.svc.FindByPatientID(context.Background(), "101")
	require.ErrorIs(t, err, service.ErrNotFound)

	_, err = f.svc.FindByPatientID(context.Background(), "abc")
	require.ErrorIs(t, err, service.ErrValidation)

	_, text, err := f.svc.ReadText(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, "one", text)
}

func TestSearchByName(t *testing.T) {
	f := newFixture(t)
	ingestDoc(t, f, "1", "Hal", "icu", "x")

	rec, err := f.svc.SearchByName(context.Background(), " Hal ")
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec.PatientID)

	_, err = f.svc.SearchByName(context.Background(), "Nobody")
	require.ErrorIs(t, err, service.ErrNotFound)

	_, err = f.svc.SearchByName(context.Background(), "")
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestReceive(t *testing.T) {
	f := newFixture(t)
	ingestDoc(t, f, "8", "Ivy", "oncology", "x")

	res, rec, err := f.svc.Receive(context.Background(), types.ReceiveRequest{
		PatientID: "8", PatientName: "Ivy", Department: "oncology", Feedback: "received, thanks",
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, res.Matched)
	assert.True(t, res.Department)
	assert.True(t, res.Downloadable)

	res, rec, err = f.svc.Receive(context.Background(), types.ReceiveRequest{
		PatientID: "8", PatientName: "Ivy", Department: "radiology",
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, res.Matched)
	assert.False(t, res.Department)
	assert.False(t, res.Downloadable)

	res, rec, err = f.svc.Receive(context.Background(), types.ReceiveRequest{
		PatientID: "8", PatientName: "Someone", Department: "oncology",
	})
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.False(t, res.Matched)

	page, err := f.svc.ListActionLogs(context.Background(), types.ListLogsQuery{PatientID: "8"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total) // upload + receive
	assert.Equal(t, model.ActionReceive, page.Items[0].Action)
	assert.Equal(t, "received, thanks", page.Items[0].Detail)
}

func TestOpenDocument(t *testing.T) {
	f := newFixture(t)
	doc := buildDocx(t, "abc")

	rec, err := f.svc.Ingest(context.Background(), service.IngestInput{
		PatientID: "21", PatientName: "Jo", Document: &service.Upload{Name: "a.docx", Blob: doc},
	})
	require.NoError(t, err)

	rc, got, info, err := f.svc.OpenDocument(context.Background(), "21")
	require.NoError(t, err)

	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, doc, data)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.FilePath, info.Key)

	require.NoError(t, f.blobs.Delete(context.Background(), rec.FilePath))

	_, _, _, err = f.svc.OpenDocument(context.Background(), "21")
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestListActionLogsPaging(t *testing.T) {
	f := newFixture(t)

	for i := range 5 {
		_, err := f.svc.Ingest(context.Background(), service.IngestInput{
			PatientID: fmt.Sprint(i % 2), PatientName: "K",
		})
		require.NoError(t, err)
	}

	all, err := f.svc.ListActionLogs(context.Background(), types.ListLogsQuery{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, all.Total)
	assert.Len(t, all.Items, 2)
	assert.Greater(t, all.Items[0].ID, all.Items[1].ID)

	rest, err := f.svc.ListActionLogs(context.Background(), types.ListLogsQuery{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, rest.Items, 1)

	odd, err := f.svc.ListActionLogs(context.Background(), types.ListLogsQuery{PatientID: "1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, odd.Total)

	_, err = f.svc.ListActionLogs(context.Background(), types.ListLogsQuery{PatientID: "x"})
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestDepartmentStatsCached(t *testing.T) {
	f := newFixture(t)

	ingestDoc(t, f, "1", "A", "cardiology", "x")
	ingestDoc(t, f, "2", "B", "cardiology", "y")

	_, err := f.svc.Ingest(context.Background(), service.IngestInput{PatientID: "3", PatientName: "C", Department: "neurology"})
	require.NoError(t, err)

	stats, err := f.svc.DepartmentStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.DepartmentCount{
		{Department: "cardiology", Records: 2, Documents: 2},
		{Department: "neurology", Records: 1, Documents: 0},
	}, stats)

	// 直接写库不会让缓存失效
	require.NoError(t, f.db.Create(&model.Record{PatientID: 4, PatientName: "D", Department: "neurology"}).Error)

	cached, err := f.svc.DepartmentStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stats, cached)

	// 通过服务入库会清除缓存
	_, err = f.svc.Ingest(context.Background(), service.IngestInput{PatientID: "5", PatientName: "E", Department: "neurology"})
	require.NoError(t, err)

	fresh, err := f.svc.DepartmentStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.DepartmentCount{
		{Department: "neurology", Records: 3, Documents: 0},
		{Department: "cardiology", Records: 2, Documents: 2},
	}, fresh)
}

func TestAuditPayloads(t *testing.T) {
	f := newFixture(t)

	good := ingestDoc(t, f, "1", "A", "", "ok")
	bad := ingestDoc(t, f, "2", "B", "", "broken soon")
	ingestDoc(t, f, "3", "C", "", "ok too")

	require.NoError(t, f.db.Model(&model.Record{}).Where("id = ?", bad.ID).
		Update("encrypted_payload", "AAAA:@@@@").Error)

	res, err := f.svc.AuditPayloads(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Checked)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []int{int(bad.ID)}, res.Failing)
	assert.NotEqual(t, good.ID, bad.ID)
}

func TestSweepOrphans(t *testing.T) {
	f := newFixture(t)
	rec := ingestDoc(t, f, "1", "A", "", "kept")

	_, err := f.blobs.Put(context.Background(), "records/1/orphan/lost.docx", strings.NewReader("x"), 1, "")
	require.NoError(t, err)

	n, err := f.svc.SweepOrphans(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n, "young orphans survive the grace period")

	n, err = f.svc.SweepOrphans(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	objects, err := f.blobs.List(context.Background(), "records/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, rec.FilePath, objects[0].Key)
}
