package domain

// URLEnvelope is the response of /upload, /crop and /save
type URLEnvelope struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// NameEnvelope is the response of /fileUpload and /streamUploadImage
type NameEnvelope struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

func URLSuccess(url string) URLEnvelope {
	return URLEnvelope{Message: MsgSuccess, URL: url}
}

func URLFailure(message string) URLEnvelope {
	return URLEnvelope{Message: message}
}

func NameSuccess(name string) NameEnvelope {
	return NameEnvelope{Message: MsgSuccess, Name: name}
}

func NameFailure(message string) NameEnvelope {
	return NameEnvelope{Message: message}
}
