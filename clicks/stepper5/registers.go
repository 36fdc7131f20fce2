package stepper5

// Register addresses.
const (
	RegGCONF      = 0x00
	RegGSTAT      = 0x01
	RegIFCNT      = 0x02
	RegSLAVECONF  = 0x03
	RegOTPREAD    = 0x05
	RegIOIN       = 0x06
	RegIHOLDIRUN  = 0x10
	RegTPOWERDOWN = 0x11
	RegTSTEP      = 0x12
	RegTPWMTHRS   = 0x13
	RegVACTUAL    = 0x22
	RegMSCNT      = 0x6A
	RegCHOPCONF   = 0x6C
	RegDRVSTATUS  = 0x6F
	RegPWMCONF    = 0x70
)

const (
	syncByte   = 0x05
	nodeAddr   = 0x00
	masterAddr = 0xFF
	writeBit   = 0x80

	version = 0x20 // IOIN[31:24]

	// GCONF
	gconfScaleAnalog   = 1 << 0
	gconfSpreadCycle   = 1 << 2
	gconfShaft         = 1 << 3
	gconfPDNDisable    = 1 << 6
	gconfMstepRegSel   = 1 << 7
	gconfMultistepFilt = 1 << 8

	// GSTAT
	gstatReset  = 1 << 0
	gstatDrvErr = 1 << 1
	gstatUVCP   = 1 << 2

	// CHOPCONF
	chopMresShift = 24
	chopMresMask  = 0x0F << chopMresShift
	chopIntpol    = 1 << 28
	chopDefault   = 0x10000053 // toff 3, hstrt 5, hend 0, intpol

	vactualMax = 1<<23 - 1
)

// crc8 is the TMC22xx UART datagram CRC: polynomial x^8+x^2+x+1 with each
// byte shifted in LSB first.
func crc8(b []byte) byte {
	var crc byte
	for _, c := range b {
		for j := 0; j < 8; j++ {
			if (crc>>7)^(c&0x01) != 0 {
				crc = crc<<1 ^ 0x07
			} else {
				crc <<= 1
			}
			c >>= 1
		}
	}
	return crc
}
