//go:build windows

package urlhandler

import (
	"errors"

	"golang.org/x/sys/windows/registry"
)

type registryStore struct {
	root registry.Key
}

func newSystemKeyStore(root string) (KeyStore, error) {
	if root == rootHKCR {
		return registryStore{root: registry.CLASSES_ROOT}, nil
	}
	return registryStore{root: registry.CURRENT_USER}, nil
}

func notFound(err error) error {
	if errors.Is(err, registry.ErrNotExist) {
		return ErrKeyNotFound
	}
	return err
}

func (s registryStore) CreateKey(path string) (bool, error) {
	k, existed, err := registry.CreateKey(s.root, path, registry.ALL_ACCESS)
	if err != nil {
		return false, err
	}
	defer k.Close()
	return existed, nil
}

func (s registryStore) SetString(path, name, value string) error {
	k, err := registry.OpenKey(s.root, path, registry.SET_VALUE)
	if err != nil {
		return notFound(err)
	}
	defer k.Close()
	return k.SetStringValue(name, value)
}

func (s registryStore) GetString(path, name string) (string, error) {
	k, err := registry.OpenKey(s.root, path, registry.QUERY_VALUE)
	if err != nil {
		return "", notFound(err)
	}
	defer k.Close()

	v, _, err := k.GetStringValue(name)
	if err != nil {
		return "", notFound(err)
	}
	return v, nil
}

func (s registryStore) DeleteKey(path string) error {
	return notFound(registry.DeleteKey(s.root, path))
}

func (s registryStore) HasSubKeys(path string) (bool, error) {
	k, err := registry.OpenKey(s.root, path, registry.QUERY_VALUE|registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return false, notFound(err)
	}
	defer k.Close()

	info, err := k.Stat()
	if err != nil {
		return false, err
	}
	return info.SubKeyCount > 0, nil
}

func (s registryStore) Exists(path string) (bool, error) {
	k, err := registry.OpenKey(s.root, path, registry.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	k.Close()
	return true, nil
}
