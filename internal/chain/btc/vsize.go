package btc

// Fixed per-type sizes in vbytes. Segwit input sizes already include the
// witness discount.
const (
	inputP2PKH             = 148 // (32+4) + 1 + (1+72+1+33) + 4
	inputP2PKHUncompressed = 180 // (32+4) + 1 + (1+72+1+65) + 4
	inputP2SH              = 91  // ((32+4+1+23+4)*4 + (1+1+72+1+33)) / 4
	inputP2WPKH            = 68  // ((32+4+1+4)*4 + (1+1+72+1+33)) / 4

	outputP2PKH  = 34
	outputP2SH   = 32
	outputP2WPKH = 31
	outputP2WSH  = 43

	// version + locktime
	txFixed = 8
)

// Vsize counts inputs and outputs per address type for one build and
// derives the virtual size used for fee calculation.
type Vsize struct {
	inputs       map[AddressType]int
	outputs      map[AddressType]int
	uncompressed bool
}

// NewVsize returns an empty counter. compressed selects the P2PKH input size.
func NewVsize(compressed bool) *Vsize {
	return &Vsize{
		inputs:       make(map[AddressType]int),
		outputs:      make(map[AddressType]int),
		uncompressed: !compressed,
	}
}

// AddInputs adjusts the input count of t by delta, which may be negative.
func (v *Vsize) AddInputs(t AddressType, delta int) {
	v.inputs[t] += delta
}

// AddOutputs adjusts the output count of t by delta. A negative delta
// retracts a speculative output such as a change slot that became dust.
func (v *Vsize) AddOutputs(t AddressType, delta int) {
	v.outputs[t] += delta
}

// Value returns the transaction virtual size in vbytes, rounded up.
func (v *Vsize) Value() uint64 {
	var inputCount, witnessCount, outputCount int
	var size uint64

	for t, n := range v.inputs {
		if n <= 0 {
			continue
		}
		inputCount += n
		size += uint64(n) * v.inputSize(t) //nolint:gosec // n > 0
		if t == P2SH || t == P2WPKH {
			witnessCount += n
		}
	}
	for t, n := range v.outputs {
		if n <= 0 {
			continue
		}
		outputCount += n
		size += uint64(n) * outputSize(t) //nolint:gosec // n > 0
	}

	// Work in quarter vbytes so the witness marker, flag and count stay exact.
	quarters := 4 * (txFixed + varIntSize(inputCount) + varIntSize(outputCount) + size)
	if witnessCount > 0 {
		quarters += 2 + varIntSize(witnessCount)
	}
	return (quarters + 3) / 4
}

func (v *Vsize) inputSize(t AddressType) uint64 {
	switch t {
	case P2PKH:
		if v.uncompressed {
			return inputP2PKHUncompressed
		}
		return inputP2PKH
	case P2SH:
		return inputP2SH
	case P2WPKH:
		return inputP2WPKH
	default:
		// Foreign script types only show up in history records.
		return 0
	}
}

func outputSize(t AddressType) uint64 {
	switch t {
	case P2PKH:
		return outputP2PKH
	case P2SH:
		return outputP2SH
	case P2WPKH:
		return outputP2WPKH
	case P2WSH:
		return outputP2WSH
	default:
		return 0
	}
}

func varIntSize(n int) uint64 {
	switch {
	case n < 0xfd:
		return 1
	case n < 0xffff:
		return 3
	default:
		return 5
	}
}
