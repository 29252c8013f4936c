// Package knowledge provides the persistence layer for facts learned during
// coding sessions. Facts are stored as JSON Lines in per-directory logs, a
// project-global knowledge graph links related facts, and a keyword search
// index supports retrieval when files are reopened. The graph and search
// index are derived artifacts: they can always be rebuilt from the fact logs.
package knowledge
