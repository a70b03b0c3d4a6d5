package crypto

// ImportCount exposes how many times the key was imported.
func (k *KeyCache) ImportCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.imports
}
