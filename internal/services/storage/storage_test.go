package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	original := []byte(`[{"id":"1","description":"Salary","amount":"5000","date":"2024-01-01","type":"income"}]`)
	if err := store.WriteFile("transactions.json", original); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	read, err := store.ReadFile("transactions.json")
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(read) != string(original) {
		t.Errorf("Content mismatch before encryption")
	}

	passphrase := "testpassword123"
	if err := store.EnableEncryption(passphrase); err != nil {
		t.Fatalf("Failed to enable encryption: %v", err)
	}
	if !store.IsEncrypted() {
		t.Error("Expected IsEncrypted() to return true")
	}

	rawData, _ := os.ReadFile(filepath.Join(dir, "transactions.json"))
	if !isAgeEncrypted(rawData) {
		t.Error("File should be encrypted on disk")
	}

	read, err = store.ReadFile("transactions.json")
	if err != nil {
		t.Fatalf("Failed to read encrypted file: %v", err)
	}
	if string(read) != string(original) {
		t.Errorf("Content mismatch after encryption: got %q, want %q", read, original)
	}

	store.Lock()
	if _, err := store.ReadFile("transactions.json"); !errors.Is(err, ErrLocked) {
		t.Errorf("Read while locked: err = %v, want ErrLocked", err)
	}
	if err := store.WriteFile("recurring.json", []byte("[]")); !errors.Is(err, ErrLocked) {
		t.Errorf("Write while locked: err = %v, want ErrLocked", err)
	}

	if err := store.Unlock(passphrase); err != nil {
		t.Fatalf("Failed to unlock: %v", err)
	}
	read, err = store.ReadFile("transactions.json")
	if err != nil {
		t.Fatalf("Failed to read after unlock: %v", err)
	}
	if string(read) != string(original) {
		t.Errorf("Content mismatch after unlock")
	}

	if err := store.DisableEncryption(passphrase); err != nil {
		t.Fatalf("Failed to disable encryption: %v", err)
	}
	if store.IsEncrypted() {
		t.Error("Expected IsEncrypted() to return false after disable")
	}

	rawData, _ = os.ReadFile(filepath.Join(dir, "transactions.json"))
	if string(rawData) != string(original) {
		t.Errorf("Raw content mismatch after decryption")
	}
}

func TestWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)

	if err := store.WriteFile("recurring.json", []byte(`[]`)); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := store.EnableEncryption("correctpassword"); err != nil {
		t.Fatalf("Failed to enable encryption: %v", err)
	}
	store.Lock()

	if err := store.Unlock("wrongpassword"); !errors.Is(err, ErrIncorrectPassphrase) {
		t.Errorf("Unlock with wrong passphrase: err = %v, want ErrIncorrectPassphrase", err)
	}
	if store.IsUnlocked() {
		t.Error("Storage should stay locked after a failed unlock")
	}
}

func TestReopenDetectsEncryption(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)
	if err := store.EnableEncryption("testpassword123"); err != nil {
		t.Fatalf("Failed to enable encryption: %v", err)
	}

	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to reopen storage: %v", err)
	}
	if !reopened.IsEncrypted() || reopened.IsUnlocked() {
		t.Errorf("reopened storage: encrypted=%v unlocked=%v, want true/false",
			reopened.IsEncrypted(), reopened.IsUnlocked())
	}
}

func TestPassphraseTooShort(t *testing.T) {
	store, _ := New(t.TempDir())
	if err := store.EnableEncryption("short"); err == nil {
		t.Error("Expected error for short passphrase")
	}
}

func TestNewFilesEncrypted(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)

	if err := store.EnableEncryption("testpassword123"); err != nil {
		t.Fatalf("Failed to enable encryption: %v", err)
	}

	content := []byte(`[{"id":"tmpl-1"}]`)
	if err := store.WriteFile("recurring.json", content); err != nil {
		t.Fatalf("Failed to write new file: %v", err)
	}

	rawData, _ := os.ReadFile(filepath.Join(dir, "recurring.json"))
	if !isAgeEncrypted(rawData) {
		t.Error("New file should be encrypted on disk")
	}

	read, err := store.ReadFile("recurring.json")
	if err != nil {
		t.Fatalf("Failed to read new file: %v", err)
	}
	if string(read) != string(content) {
		t.Errorf("Content mismatch: got %q, want %q", read, content)
	}
}

func TestMissingFile(t *testing.T) {
	store, _ := New(t.TempDir())
	if _, err := store.ReadFile("nope.json"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
	if store.Exists("nope.json") {
		t.Error("Exists reported a missing document")
	}
}
