// Package hcl loads network files written in HCL. A network file declares
// module instances, the connections between their ports and loop pairs:
//
//	module "source" {
//	  type  = "SendTestMatrix"
//	  value = [[1, 2], [3, 4]]
//	}
//
//	module "negate" {
//	  type     = "EvaluateLinearAlgebraUnary"
//	  operator = "negate"
//	}
//
//	connect {
//	  from = source[0]
//	  to   = negate[0]
//	}
//
//	loop {
//	  start = counter
//	  end   = until
//	}
//
// Every attribute of a module block other than `type` and `version` sets a
// parameter. The loader never talks to the scheduler; it builds a Network
// through the same AddModule, Connect and PairLoop calls any other client
// would use.
package hcl
