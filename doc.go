/*
go-rknneval runs a directory of test images through a YOLO object detection
model on the Rockchip NPU and reports the detections and per image latency.

The pipeline loads the compiled RKNN model, resolves the input dimensions and
quantization mode from the tensor attributes, then for every image in the
dataset decodes it, resizes it to the model input with the RGA hardware
scaler (or reuses the pixels directly when the sizes already match), runs
inference and hands the outputs to a Decoder.

The accelerator runtime, the scaler, the image codec and the decoder are
accessed through the Session, Scaler, Codec and Decoder interfaces.  The rknn,
preprocess/rga, codec/cvcodec and postprocess packages provide the
implementations used on device.

See example/testdataset for the command line driver.
*/
package rknneval
