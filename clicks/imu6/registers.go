package imu6

const (
	// 7-bit I2C addresses selected by SA0.
	AddressLow  = 0x6A
	AddressHigh = 0x6B

	whoAmIValue = 0x6A

	regFuncCfgAccess = 0x01
	regWhoAmI        = 0x0F
	regCtrl1XL       = 0x10 // ODR_XL[7:4] FS_XL[3:2]
	regCtrl2G        = 0x11 // ODR_G[7:4] FS_G[3:2] FS_125[1]
	regCtrl3C        = 0x12 // BOOT[7] BDU[6] H_LACTIVE[5] PP_OD[4] SIM[3] IF_INC[2] BLE[1] SW_RESET[0]
	regCtrl4C        = 0x13
	regStatus        = 0x1E // TDA[2] GDA[1] XLDA[0]
	regOutTempL      = 0x20
	regOutXLG        = 0x22
	regOutXLXL       = 0x28

	ctrl3BDU     = 1 << 6
	ctrl3IfInc   = 1 << 2
	ctrl3SWReset = 1 << 0
	ctrl3Boot    = 1 << 7

	statusXLDA = 1 << 0
	statusGDA  = 1 << 1
	statusTDA  = 1 << 2

	fsXLMask = 0x0C
	odrMask  = 0xF0
	fsGMask  = 0x0E
)
