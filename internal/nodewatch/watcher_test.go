package nodewatch_test

import (
	"crypto/x509/pkix"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/andrea-athirat/corda/internal/nodecache"
	"github.com/andrea-athirat/corda/internal/nodewatch"
	"github.com/andrea-athirat/corda/internal/pki"
	"github.com/andrea-athirat/corda/internal/wire"
)

func testSignedInfo(t *testing.T) *nodecache.SignedNodeInfo {
	t.Helper()
	root, err := pki.CreateSelfSignedRoot(pkix.Name{CommonName: "zone root"}, pki.SchemeECDSASecp256r1SHA256, pki.DefaultValidity)
	if err != nil {
		t.Fatalf("CreateSelfSignedRoot: %v", err)
	}
	env, err := wire.SignValue[nodecache.NodeInfo](nodecache.NodeInfo{
		LegalIdentities: []string{"O=Acme,L=London,C=GB"},
		Serial:          1,
	}, root.KeyPair.Private, root.Cert)
	if err != nil {
		t.Fatalf("SignValue: %v", err)
	}
	return env
}

func TestDirWatcher_saveToFileMarksProcessed(t *testing.T) {
	w, err := nodewatch.NewDirWatcher(t.TempDir(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewDirWatcher: %v", err)
	}
	defer w.Close()

	info := testSignedInfo(t)
	if err := w.SaveToFile(info); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	h := nodecache.HashOf(info.Payload)
	if _, ok := w.ProcessedHashes()[h]; !ok {
		t.Error("expected saved node-info hash to be marked processed")
	}
}

func TestDirWatcher_emitsUpdateOnSave(t *testing.T) {
	w, err := nodewatch.NewDirWatcher(t.TempDir(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewDirWatcher: %v", err)
	}
	defer w.Close()

	info := testSignedInfo(t)
	if err := w.SaveToFile(info); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	select {
	case got := <-w.Updates():
		if got == nil {
			t.Error("expected non-nil update")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for fsnotify update after SaveToFile")
	}
}
