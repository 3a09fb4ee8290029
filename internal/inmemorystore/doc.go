// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the nodestore.Store interface.
//
// # Concurrency Model
//
// Unlike inmemorytopology which uses RWMutex, this store uses sync.Map
// because each module's state is independent and written far more often than
// the key space changes. Output ports hold an atomic.Pointer so a reader
// sees either the previous datum or the new one, never a partial update.
package inmemorystore
