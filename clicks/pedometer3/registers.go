package pedometer3

const (
	AddressHigh = 0x1F // ADDR pin high (board default)
	AddressLow  = 0x1E

	whoAmIValue = 0x38
	cotrValue   = 0x55
)

const (
	// 0x02..0x07 hold the advanced data path outputs XADP..ZADP.
	regXOutL    = 0x08
	regPedStpL  = 0x0E
	regCOTR     = 0x10
	regWhoAmI   = 0x11
	regINS1     = 0x12
	regINS2     = 0x13
	regINS3     = 0x14
	regStat     = 0x15
	regIntRel   = 0x17
	regCntl1    = 0x18
	regCntl2    = 0x19
	regODCntl   = 0x1D
	regINC1     = 0x1E
	regINC7     = 0x24
	regPedStpWM = 0x38 // L, H
	regPedCntl1 = 0x3A // PED_CNTL1..PED_CNTL10
)

// CNTL1
const (
	cntl1PC1       = 1 << 7
	cntl1RES       = 1 << 6
	cntl1DRDYE     = 1 << 5
	cntl1GSelShift = 3
	cntl1GSelMask  = 0x3 << cntl1GSelShift
	cntl1TDTE      = 1 << 2
	cntl1PDE       = 1 << 1
)

const cntl2SRST = 1 << 7

const odcntlOSAMask = 0x0F

// INC1: physical interrupt pin 1.
const (
	inc1IEN1 = 1 << 5
	inc1IEA1 = 1 << 4 // active high
)

// INS2 / INS3 interrupt sources; INC7 routes the same bits to INT1.
const (
	ins2TapMask   = 0x3 << 2
	ins2SingleTap = 0x1 << 2
	ins2DoubleTap = 0x2 << 2
	ins2StepOvf   = 1 << 1
	ins2StepWM    = 1 << 0
	ins3StepInc   = 1 << 6

	inc7StepInc = 1 << 6
	inc7StepOvf = 1 << 1
	inc7StepWM  = 1 << 0
)

// pedTable holds PED_CNTL1..10 as recommended for wrist and hip wear.
var pedTable = [10]byte{0x66, 0x2C, 0x17, 0x1F, 0x24, 0x13, 0x0B, 0x08, 0x19, 0x1C}
