package relay

import (
	"fmt"
	"strings"
	"testing"
)

func TestGenerateCodeShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generateCode failed: %v", err)
		}
		if len(code) != roomCodeLength {
			t.Fatalf("code %q has length %d, want %d", code, len(code), roomCodeLength)
		}
		for _, ch := range code {
			if !strings.ContainsRune(roomCodeAlphabet, ch) {
				t.Fatalf("code %q contains %q, outside the restricted alphabet", code, ch)
			}
		}
		seen[code] = true
	}
	// 200 draws over a 31^6 space colliding down to a handful would
	// mean the generator is broken.
	if len(seen) < 190 {
		t.Fatalf("only %d distinct codes out of 200", len(seen))
	}
}

func TestCodeAlphabetExcludesLookalikes(t *testing.T) {
	for _, forbidden := range "0O1IL" {
		if strings.ContainsRune(roomCodeAlphabet, forbidden) {
			t.Errorf("alphabet contains look-alike character %q", forbidden)
		}
	}
}

func TestCreateAndJoin(t *testing.T) {
	reg := NewRoomRegistry()

	code, err := reg.Create("s1", "alice")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !reg.Has(code) {
		t.Fatal("created room not visible")
	}

	files, users, err := reg.Join(code, "s2", "bob")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("fresh room manifest has %d files", len(files))
	}
	if len(users) != 2 {
		t.Errorf("users = %v, want two members", users)
	}
}

func TestJoinUnknownCode(t *testing.T) {
	reg := NewRoomRegistry()
	if _, _, err := reg.Join("NOPE42", "s1", "alice"); err != errRoomNotFound {
		t.Fatalf("Join = %v, want errRoomNotFound", err)
	}
}

func TestLeaveLastMemberDestroysRoom(t *testing.T) {
	reg := NewRoomRegistry()
	code, _ := reg.Create("s1", "alice")
	reg.AppendFile(code, &File{ID: "f1", Name: "a.txt"})
	reg.AppendFile(code, &File{ID: "f2", Name: "b.txt"})

	res := reg.Leave(code, "s1")
	if !res.Member || !res.Destroyed {
		t.Fatalf("LeaveResult = %+v, want member+destroyed", res)
	}
	if len(res.RemovedFiles) != 2 {
		t.Errorf("RemovedFiles = %d, want 2", len(res.RemovedFiles))
	}
	if reg.Has(code) {
		t.Error("room still visible after last member left")
	}
	// The file index must drop with the room.
	if _, _, ok := reg.FileByID("f1"); ok {
		t.Error("file index still resolves f1 after teardown")
	}
}

func TestLeaveNonMemberIsNoop(t *testing.T) {
	reg := NewRoomRegistry()
	code, _ := reg.Create("s1", "alice")

	res := reg.Leave(code, "stranger")
	if res.Member {
		t.Fatal("non-member leave reported as member")
	}
	if !reg.Has(code) {
		t.Fatal("room destroyed by non-member leave")
	}
}

func TestManifestOverflowEvictsOldest(t *testing.T) {
	reg := NewRoomRegistry()
	code, _ := reg.Create("s1", "alice")

	for i := 0; i < maxManifestFiles; i++ {
		evicted, ok := reg.AppendFile(code, &File{ID: fmt.Sprintf("f%d", i)})
		if !ok || evicted != nil {
			t.Fatalf("append %d: evicted=%v ok=%v", i, evicted, ok)
		}
	}
	if n := reg.ManifestLen(code); n != maxManifestFiles {
		t.Fatalf("manifest length = %d, want %d", n, maxManifestFiles)
	}

	evicted, ok := reg.AppendFile(code, &File{ID: "overflow"})
	if !ok {
		t.Fatal("append failed")
	}
	if evicted == nil || evicted.ID != "f0" {
		t.Fatalf("evicted = %+v, want oldest (f0)", evicted)
	}
	if n := reg.ManifestLen(code); n != maxManifestFiles {
		t.Fatalf("manifest length after overflow = %d, want %d", n, maxManifestFiles)
	}
	if _, _, ok := reg.FileByID("f0"); ok {
		t.Error("evicted file still resolvable through index")
	}
	if _, _, ok := reg.FileByID("overflow"); !ok {
		t.Error("new file not resolvable through index")
	}
}

func TestRemoveFileIdempotent(t *testing.T) {
	reg := NewRoomRegistry()
	code, _ := reg.Create("s1", "alice")
	reg.AppendFile(code, &File{ID: "f1"})

	if _, _, ok := reg.RemoveFile("f1"); !ok {
		t.Fatal("first RemoveFile failed")
	}
	if _, _, ok := reg.RemoveFile("f1"); ok {
		t.Fatal("second RemoveFile succeeded, want no-op")
	}
}

func TestRemoveExpired(t *testing.T) {
	reg := NewRoomRegistry()
	code, _ := reg.Create("s1", "alice")
	reg.AppendFile(code, &File{ID: "keeps"})
	reg.AppendFile(code, &File{ID: "goes"})

	removed := reg.RemoveExpired(func(f *File) bool { return f.ID == "goes" })
	if len(removed[code]) != 1 || removed[code][0].ID != "goes" {
		t.Fatalf("removed = %v", removed)
	}
	if _, _, ok := reg.FileByID("goes"); ok {
		t.Error("expired file still indexed")
	}
	if _, _, ok := reg.FileByID("keeps"); !ok {
		t.Error("surviving file lost")
	}
}

func TestAppendFileRoomGone(t *testing.T) {
	reg := NewRoomRegistry()
	if _, ok := reg.AppendFile("GHOST1", &File{ID: "f1"}); ok {
		t.Fatal("append into missing room succeeded")
	}
}
