// Package quality supplies per-layer quality scores to the recall engine.
//
// A quality score is a historical reliability/precision estimate for one
// memory layer, in [0, 1]. Scores drive layer selection: a layer with
// sufficiently low historical quality is skipped entirely, avoiding wasted
// latency on stores that rarely contribute.
//
// Scores come from one of three places, in order of preference:
//
//   - a Source supplied per call by the host's meta-quality collaborator
//   - an EtcdStore watching scores the collaborator publishes to etcd,
//     shared across service instances
//   - Estimate, a keyword heuristic over the query context, used when no
//     live signal is available
package quality
