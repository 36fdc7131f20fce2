package dtmf

// C-BUS addresses. Direction is fixed per address.
const (
	regReset   = 0x01 // command only, no data
	regGenCtrl = 0xE0 // 16-bit write
	regTxMode  = 0xE1 // 16-bit write
	regRxMode  = 0xE2 // 16-bit write
	regTxData  = 0xE3 // 8-bit write
	regRxData  = 0xE5 // 8-bit read
	regStatus  = 0xE6 // 16-bit read
	regProgram = 0xE8 // 16-bit write
)

// General control.
const (
	gcPowerUp   = 1 << 8
	gcReset     = 1 << 7
	gcIRQEnable = 1 << 6
	// IRQ mask bits mirror status bits 13..8.
	gcMaskTxReady = 1 << 5
	gcMaskRxReady = 1 << 3
	gcMaskDTMF    = 1 << 2
)

// Transmit / receive mode fields.
const (
	modeShift = 12

	txDisabled = 0x0 << modeShift
	txDTMF     = 0x1 << modeShift
	txV23      = 0x3 << modeShift
	txBell202  = 0x5 << modeShift

	rxDisabled = 0x0 << modeShift
	rxDTMF     = 0x1 << modeShift
	rxV23      = 0x3 << modeShift
	rxBell202  = 0x5 << modeShift

	levelShift = 9 // 0 dB at 000, -1.5 dB per step
	levelMask  = 0x7 << levelShift

	txDTMFSelect = 1 << 4 // b4: DTMF (vs. single tone)
	txDataFormat = 0x3 << 6 // 8 data bits, no parity, async
	rxDataFormat = 0x3 << 6
)

// Status register.
const (
	stIRQ        = 1 << 15
	stTxReady    = 1 << 14
	stTxUnderrun = 1 << 13
	stRxReady    = 1 << 12
	stRxOverrun  = 1 << 11
	stRxFraming  = 1 << 10
	stDTMF       = 1 << 5
	stCodeMask   = 0x0F
)
